// Package domain defines the inventory entities and the repository and
// collaborator contracts the application layer depends on.
//
// Files are concept-oriented (user.go, material.go, usage.go, forecast.go, ...).
// There is no implementation code here, only types, small value helpers and interfaces.
package domain
