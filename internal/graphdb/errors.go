package graphdb

import (
	"context"
	"errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/xkilldash9x/cypherguard/internal/queryerr"
)

// translateError maps a driver or context failure onto the queryerr
// taxonomy. Errors that are already typed pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := queryerr.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return queryerr.Timeout("query exceeded its time limit", err)
	}
	if errors.Is(err, context.Canceled) {
		return queryerr.Connection("query cancelled by the caller", false, err)
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return translateServerError(neoErr)
	}
	var tokenErr *neo4j.TokenExpiredError
	if errors.As(err, &tokenErr) {
		return queryerr.Connection("database credentials expired", false, err)
	}
	var usageErr *neo4j.UsageError
	if errors.As(err, &usageErr) {
		return queryerr.Malformed("", usageErr.Message, err)
	}
	if neo4j.IsConnectivityError(err) {
		return queryerr.Connection("lost connection to the database", true, err)
	}
	return queryerr.Connection("unexpected database driver failure", true, err)
}

// translateServerError classifies a status code reported by the server.
func translateServerError(e *neo4j.Neo4jError) error {
	code := e.Code
	switch {
	case strings.HasPrefix(code, "Neo.ClientError.Transaction.TransactionTimedOut"):
		return queryerr.Timeout("query exceeded the server transaction timeout", e)
	case code == "Neo.ClientError.Statement.AccessMode",
		code == "Neo.ClientError.Security.Forbidden":
		qe := queryerr.Blocked("the database refused a write in a read-only session",
			"Rephrase the request as a read: 'Show me...', 'List...', 'Find...', or 'Count...'")
		qe.Code, qe.Err = code, e
		return qe
	case code == "Neo.ClientError.Security.Unauthorized",
		code == "Neo.ClientError.Security.AuthenticationRateLimit",
		code == "Neo.ClientError.Security.TokenExpired",
		code == "Neo.ClientError.Database.DatabaseNotFound":
		qe := queryerr.Connection(e.Msg, false, e)
		qe.Code = code
		return qe
	case strings.HasPrefix(code, "Neo.TransientError."),
		strings.HasPrefix(code, "Neo.DatabaseError."):
		qe := queryerr.Connection(e.Msg, true, e)
		qe.Code = code
		return qe
	case strings.HasPrefix(code, "Neo.ClientError."):
		// Syntax, semantic, parameter, type and procedure errors all belong
		// to the statement author.
		return queryerr.Malformed(code, e.Msg, e)
	default:
		qe := queryerr.Connection(e.Msg, true, e)
		qe.Code = code
		return qe
	}
}

// retryable reports whether the executor should retry err internally.
// Only connection-level failures qualify.
func retryable(err error) bool {
	return queryerr.KindOf(err) == queryerr.KindConnection && queryerr.IsRetryable(err)
}
