package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/2beens/fitlog/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// WelcomeNotifier posts a welcome-email request to the notifier endpoint
// after a user finishes onboarding. Failures are the caller's to log;
// onboarding success never depends on the email going out.
type WelcomeNotifier struct {
	endpoint   string
	httpClient *http.Client
}

func NewWelcomeNotifier(endpoint string, httpClient *http.Client) *WelcomeNotifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WelcomeNotifier{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

func (n *WelcomeNotifier) Notify(ctx context.Context, firstName, toEmail string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "welcomeNotifier.notify")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("to.email", toEmail))

	if n.endpoint == "" {
		return nil
	}

	payload, err := json.Marshal(struct {
		FirstName string `json:"firstName"`
		ToEmail   string `json:"toEmail"`
	}{
		FirstName: firstName,
		ToEmail:   toEmail,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected notifier response status: %s", resp.Status)
	}

	return nil
}
