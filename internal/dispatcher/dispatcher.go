package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxLoggedBody = 64 * 1024

// RejectedError means the gateway answered with a non-2xx status.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway responded with status %d", e.StatusCode)
}

// UnreachableError means the request went out but no response came back.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string { return "no response from gateway: " + e.Err.Error() }
func (e *UnreachableError) Unwrap() error { return e.Err }

// RequestError means the request could not be built, usually a bad
// GATEWAY_URL.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return "build gateway request: " + e.Err.Error() }
func (e *RequestError) Unwrap() error { return e.Err }

type Response struct {
	StatusCode int
	Body       string
}

// Dispatcher forwards Zabbix alerts to the gateway. It makes at most one
// delivery attempt per alert; Zabbix owns retries.
type Dispatcher struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
	Logger  zerolog.Logger
}

// Send posts req to the gateway once.
func (d *Dispatcher) Send(ctx context.Context, req GraphRequest) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, &RequestError{Err: err}
	}
	return d.post(ctx, body)
}

func (d *Dispatcher) post(ctx context.Context, body []byte) (Response, error) {
	target, err := url.Parse(d.URL)
	if err != nil {
		return Response{}, &RequestError{Err: err}
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return Response{}, &RequestError{Err: fmt.Errorf("unsupported protocol scheme %q", target.Scheme)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return Response{}, &RequestError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client().Do(httpReq)
	if err != nil {
		return Response{}, &UnreachableError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	if err != nil {
		return Response{}, &UnreachableError{Err: fmt.Errorf("read response: %w", err)}
	}
	out := Response{StatusCode: resp.StatusCode, Body: string(respBody)}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &RejectedError{StatusCode: resp.StatusCode, Body: out.Body}
	}
	return out, nil
}

func (d *Dispatcher) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Run handles one invocation end to end: validate the arguments, extract the
// item id, post to the gateway and log the outcome. Every path is logged
// between a start and an end marker. The returned error is informational;
// callers exit successfully regardless.
func (d *Dispatcher) Run(ctx context.Context, args []string) (err error) {
	ctx, span := otel.Tracer("dispatcher").Start(ctx, "dispatch-alert")
	defer span.End()

	d.Logger.Info().Msg("--- dispatch started ---")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			d.Logger.Info().Msg("--- dispatch finished with error ---")
			return
		}
		d.Logger.Info().Msg("--- dispatch finished ---")
	}()

	alert, err := ParseArgs(args)
	d.Logger.Info().Msgf("Recipient: %s", alert.Recipient)
	d.Logger.Info().Msgf("Subject: %s", alert.Subject)
	d.Logger.Info().Msgf("Body: %s", alert.Body)
	if err != nil {
		d.Logger.Error().Msgf("insufficient arguments: %v", err)
		return err
	}

	itemID, err := ExtractItemID(alert.Body)
	if err != nil {
		d.Logger.Error().Msg(err.Error())
		return err
	}
	d.Logger.Info().Msgf("Extracted item id: %s", itemID)
	span.SetAttributes(attribute.String("zabbix.item_id", itemID))

	payload, err := json.Marshal(NewGraphRequest(alert, itemID))
	if err != nil {
		err = &RequestError{Err: err}
		d.logFailure(err)
		return err
	}
	d.Logger.Info().Msgf("Sending request to: %s", d.URL)
	d.Logger.Info().Msgf("Payload: %s", payload)

	resp, err := d.post(ctx, payload)
	if err != nil {
		d.logFailure(err)
		return err
	}
	d.Logger.Info().Msgf("SUCCESS: gateway responded with status %d", resp.StatusCode)
	d.Logger.Info().Msgf("Gateway response: %s", resp.Body)
	return nil
}

func (d *Dispatcher) logFailure(err error) {
	d.Logger.Error().Msg("request to gateway failed:")

	var rejected *RejectedError
	var unreachable *UnreachableError
	var reqErr *RequestError
	switch {
	case errors.As(err, &rejected):
		d.Logger.Error().Msgf("- Status: %d", rejected.StatusCode)
		d.Logger.Error().Msgf("- Data: %s", rejected.Body)
	case errors.As(err, &unreachable):
		d.Logger.Error().Msg("- No response received from the gateway. Check that the API is running and reachable.")
		d.Logger.Error().Msgf("- Error details: %s", unreachable.Err)
	case errors.As(err, &reqErr):
		d.Logger.Error().Msg("- Could not build the request:")
		d.Logger.Error().Msgf("- Error details: %s", reqErr.Err)
	default:
		d.Logger.Error().Msgf("- Error details: %s", err)
	}
}
