// Package app provides the application service layer.
//
// Orchestrates use cases: accounts, categories, materials, stock operations, turnover
// reports, cached forecasts and scheduled digests. Sits between HTTP handlers and domain
// repositories and maps domain sentinels to structured application errors.
package app
