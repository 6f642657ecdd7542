package vault

const refreshTokenEntry = "refresh_token"

// TokenStore adapts the vault to the API client's token persistence.
type TokenStore struct {
	v *Vault
}

func NewTokenStore(v *Vault) *TokenStore {
	return &TokenStore{v: v}
}

func (t *TokenStore) RefreshToken() (string, error) {
	secret, err := t.v.Get(refreshTokenEntry)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

func (t *TokenStore) SaveRefreshToken(token string) error {
	return t.v.Set(refreshTokenEntry, []byte(token))
}
