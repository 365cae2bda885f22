package jwtauth

import "github.com/golang-jwt/jwt/v5"

// Claims conserva el formato {id, userType} que ya emiten los clientes móviles.
type Claims struct {
	ID       string `json:"id"`
	UserType string `json:"userType"`
	jwt.RegisteredClaims
}
