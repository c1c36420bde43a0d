package repo

import (
	"context"

	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/store"
	"ejournal/internal/services/gradesync/domain"
)

// Registration looks up the platform registration for issuer and client id
func (r *queries) Registration(ctx context.Context, issuer, clientID string) (domain.Registration, error) {
	const sql = `
		SELECT issuer, client_id, token_url, audience, key_id, private_key_pem
		FROM lti_registrations
		WHERE issuer = $1 AND client_id = $2
	`
	reg, err := store.One(ctx, r.q, func(row store.Row) (domain.Registration, error) {
		var x domain.Registration
		err := row.Scan(&x.Issuer, &x.ClientID, &x.TokenURL, &x.Audience, &x.KeyID, &x.PrivateKeyPEM)
		return x, err
	}, sql, issuer, clientID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Registration{}, perr.Newf(perr.ErrorCodeConfig, "no lti registration for %s / %s", issuer, clientID)
		}
		return domain.Registration{}, dbErr(err, "gradesync: registration")
	}
	return reg, nil
}
