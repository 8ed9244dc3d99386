package gallery

import (
	"context"
	"sort"
)

type repoMock struct {
	images map[int]*Image
	nextID int
}

func NewMockGalleryRepo() *repoMock {
	return &repoMock{
		images: make(map[int]*Image),
		nextID: 1,
	}
}

func (r *repoMock) Add(_ context.Context, image Image) (*Image, error) {
	image.ID = r.nextID
	r.nextID++
	r.images[image.ID] = &image
	return &image, nil
}

func (r *repoMock) List(_ context.Context, userID int) ([]Image, error) {
	images := make([]Image, 0)
	for _, image := range r.images {
		if image.UserID == userID {
			images = append(images, *image)
		}
	}
	sort.Slice(images, func(i, j int) bool {
		return images[i].CreatedAt.After(images[j].CreatedAt)
	})
	return images, nil
}

func (r *repoMock) Delete(_ context.Context, id int) error {
	if _, ok := r.images[id]; !ok {
		return ErrImageNotFound
	}
	delete(r.images, id)
	return nil
}
