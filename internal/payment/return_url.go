// Package payment bridges the hosted checkout page back into the app: the
// web view's navigation to the provider's return URL is intercepted, the
// provider-assigned identifiers are lifted off the query string, and the
// backend confirmation endpoint settles the payment.
package payment

import (
	"net/url"
	"strings"
)

// ReturnParams is what the provider hands back on the return redirect.
type ReturnParams struct {
	TransactionID string
	Reference     string
	Status        string

	// Echo carries every original query parameter; the confirmation
	// endpoint wants them back verbatim.
	Echo url.Values
}

// MatchReturnURL reports whether u is the provider's return redirect and, if
// so, extracts the provider identifiers. The pattern is a path suffix match
// on the configured return path.
func MatchReturnURL(u *url.URL, returnPath string) (*ReturnParams, bool) {
	if u == nil || !strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), strings.TrimSuffix(returnPath, "/")) {
		return nil, false
	}

	q := u.Query()
	p := &ReturnParams{
		TransactionID: firstParam(q, "transaction_id", "txn_id", "transactionId"),
		Reference:     firstParam(q, "reference", "ref", "order_id"),
		Status:        firstParam(q, "status", "result"),
		Echo:          q,
	}
	if p.TransactionID == "" && p.Reference == "" {
		return nil, false
	}
	return p, true
}

func firstParam(q url.Values, names ...string) string {
	for _, n := range names {
		if v := q.Get(n); v != "" {
			return v
		}
	}
	return ""
}
