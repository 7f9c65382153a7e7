package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_email",
			SQL: `SELECT lower(email), COUNT(*) FROM accounts
                  WHERE email IS NOT NULL AND email <> ''
                  GROUP BY lower(email) HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_unique_phone",
			SQL: `SELECT phone, COUNT(*) FROM accounts
                  WHERE phone IS NOT NULL AND phone <> ''
                  GROUP BY phone HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_unique_link",
			SQL: `SELECT provider, provider_user_id, COUNT(*) FROM identity_links
                  GROUP BY provider, provider_user_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_link_targets_account",
			SQL: `SELECT l.provider, l.provider_user_id, l.account_id FROM identity_links l
                  LEFT JOIN accounts a ON a.id = l.account_id
                  WHERE a.id IS NULL`,
		},
		{
			Name: "O5_monotonic_enrichment",
			SQL:  `SELECT account_id, column_name, old_value, new_value FROM account_overwrites`,
		},
		{
			Name: "O6_email_normalized",
			SQL:  `SELECT id, email FROM accounts WHERE email <> lower(email)`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
