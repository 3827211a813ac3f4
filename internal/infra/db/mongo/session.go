package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

const writeConflictCode = 112

// scoped binds ctx to the unit's session so reads see the transaction's
// own writes. A ctx that already carries a session is left alone.
func scoped(ctx context.Context, session mongo.Session) context.Context {
	if session == nil {
		return ctx
	}
	if mongo.SessionFromContext(ctx) != nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, session)
}

// isWriteConflict reports a transaction that lost a race on the same documents.
func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(writeConflictCode) || se.HasErrorLabel("TransientTransactionError")
	}
	return false
}
