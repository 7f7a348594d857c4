package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/bikerent-backend/api/responses"
	phonepewebhook "github.com/angelmondragon/bikerent-backend/internal/webhooks/phonepe"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

type PhonePeWebhookService interface {
	HandleEvent(ctx context.Context, event *phonepewebhook.Event) (phonepewebhook.Result, error)
}

type phonePeWebhookGuard interface {
	CheckAndMark(ctx context.Context, digest string) (bool, error)
	Delete(ctx context.Context, digest string) error
}

type phonePeAuthorizer interface {
	Verify(header string) bool
}

type ackResponse struct {
	Received bool   `json:"received"`
	Result   string `json:"result,omitempty"`
}

// PhonePeWebhook reconciles PhonePe subscription callbacks. Once the body decodes
// and the caller is authorized, the delivery is always acknowledged with 200 so
// PhonePe does not retry; processing failures are logged instead.
// guard may be nil to disable dedupe.
func PhonePeWebhook(svc PhonePeWebhookService, authz phonePeAuthorizer, guard phonePeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if authz != nil && !authz.Verify(r.Header.Get("Authorization")) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook authorization"))
			return
		}

		event, err := phonepewebhook.Decode(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithField(ctx, "event", event.Name)
		}

		digest := phonepewebhook.BodyDigest(payload)
		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, digest)
			switch {
			case err != nil:
				logError(ctx, logg, "webhook.dedupe_failed", err)
			case seen:
				logInfo(ctx, logg, "webhook.duplicate")
				responses.WriteSuccess(w, ackResponse{Received: true, Result: "duplicate"})
				return
			}
		}

		result, err := svc.HandleEvent(ctx, event)
		if err != nil {
			if guard != nil {
				if delErr := guard.Delete(ctx, digest); delErr != nil {
					logError(ctx, logg, "webhook.dedupe_release_failed", delErr)
				}
			}
			logError(ctx, logg, "webhook.processing_failed", err)
			responses.WriteSuccess(w, ackResponse{Received: true})
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "result", string(result)), "webhook.processed")
		}
		responses.WriteSuccess(w, ackResponse{Received: true, Result: string(result)})
	}
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
}

func logInfo(ctx context.Context, logg *logger.Logger, msg string) {
	if logg != nil {
		logg.Info(ctx, msg)
	}
}
