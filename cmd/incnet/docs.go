package main

// General API documentation for swaggo. Run `swag init -g cmd/incnet/docs.go -o internal/httpapi/docs` to regenerate docs.
//
// @title           incnet admin API
// @version         1.0
// @description     Admin API for an incremental-learning network with a growing cosine head.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
