package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 8

// HashPassword はbcryptでパスワードをハッシュ化する。
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword はハッシュとパスワードが一致するかを返す。
// ハッシュが空（パスワード未設定のユーザー）の場合は常にfalse。
func CheckPassword(hash, pw string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	return err == nil
}

// isTooLong はbcryptが扱える72バイトを超えるかを返す。
func isTooLong(err error) bool {
	return errors.Is(err, bcrypt.ErrPasswordTooLong)
}
