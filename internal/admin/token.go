package admin

import (
	"fmt"
	"time"

	"teambot/jwt"
)

func GenerateToken(subject string, exp time.Time, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty signing key")
	}
	if !exp.After(time.Now()) {
		return "", fmt.Errorf("expiry %s is in the past", exp.Format(time.RFC3339))
	}

	ss, err := jwt.NewAdminToken(subject, exp, []byte(key))
	if err != nil {
		fmt.Println("Signing failure:", err)
		return "", err
	}

	return ss, nil
}
