package main

// General API documentation for swaggo. Build with -tags swagger to serve it.
//
// @title           llamad API
// @version         1.0
// @description     HTTP API for managing a local llama-server and streaming text generation.
//
// @contact.name   llamad maintainers
// @contact.url    https://github.com/your-org/llamad
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
