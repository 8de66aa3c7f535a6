package providerfake

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists = errors.New("user already exists")
)

type account struct {
	userID       string
	email        string
	passwordHash string
}

// directory is the fake provider's user table. Passwords are kept as bcrypt hashes.
type directory struct {
	lock     sync.RWMutex
	accounts map[string]account // keyed by lower-cased email
}

func newDirectory() *directory {
	return &directory{accounts: make(map[string]account)}
}

func (d *directory) add(email, password string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", errors.Wrap(err, "[directory.add] hash password")
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	key := strings.ToLower(email)
	if _, ok := d.accounts[key]; ok {
		return "", errors.Wrapf(ErrUserExists, "[directory.add] %s", email)
	}
	a := account{userID: uuid.NewString(), email: email, passwordHash: hash}
	d.accounts[key] = a
	return a.userID, nil
}

// authenticate returns the account when password matches.
func (d *directory) authenticate(email, password string) (account, bool) {
	d.lock.RLock()
	a, ok := d.accounts[strings.ToLower(email)]
	d.lock.RUnlock()

	if !ok || !CheckPasswordHash(password, a.passwordHash) {
		return account{}, false
	}
	return a, true
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
