package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"time"

	"staybook/internal/app/commands"
	domainbooking "staybook/internal/domain/booking"
)

// IdempotentCommand is a command a client may safely resend. IdempotencyKey
// must already be scoped to the caller.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // pointer to the handler result type
}

// IdempotencyRecord is the remembered outcome of one successful command.
// Fingerprint identifies the request so a reused key with a different
// body is refused instead of replayed.
type IdempotencyRecord struct {
	Key         string
	Fingerprint string
	Payload     []byte
	OccurredAt  time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays the stored result of a successful command carrying the
// same key. Failures are not remembered so a retry can succeed.
func Idempotency(store IdempotencyStore, codec ResultCodec, logger *slog.Logger) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := cmd.Key() + ":" + idCmd.IdempotencyKey()
			fingerprint, err := fingerprintOf(codec, cmd)
			if err != nil {
				return nil, err
			}

			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, domainbooking.Persistence("load idempotency record", err)
			}
			if found {
				if rec.Fingerprint != "" && rec.Fingerprint != fingerprint {
					return nil, &domainbooking.ValidationError{Field: "idempotency_key", Reason: "already used for a different request"}
				}
				return replay(codec, idCmd, rec)
			}

			result, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			record := IdempotencyRecord{
				Key:         key,
				Fingerprint: fingerprint,
				OccurredAt:  time.Now().UTC(),
			}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, encErr
				}
				record.Payload = payload
			}
			// The command is committed; losing the replay record only costs
			// a duplicate attempt that the interval store will refuse.
			if err := store.Save(context.WithoutCancel(ctx), record); err != nil && logger != nil {
				logger.Warn("idempotency record not saved", "command", cmd.Key(), "key", key, "error", err)
			}
			return result, nil
		})
	}
}

func replay(codec ResultCodec, cmd IdempotentCommand, rec IdempotencyRecord) (any, error) {
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface(), nil
	}
	return proto, nil
}

func fingerprintOf(codec ResultCodec, cmd commands.Command) (string, error) {
	body, err := codec.Encode(cmd)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(cmd.Key()+"\n"), body...))
	return hex.EncodeToString(sum[:]), nil
}
