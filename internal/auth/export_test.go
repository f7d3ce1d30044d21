package auth

import "golang.org/x/crypto/bcrypt"

var GenerateCode = generateCode

// UseMinHashCost keeps bcrypt fast in tests.
func (a *Auth) UseMinHashCost() {
	a.hashCost = bcrypt.MinCost
}
