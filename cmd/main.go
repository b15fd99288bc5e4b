// cmd/main.go
package main

import (
	"go-ledger-api/app"
)

// @title           Go-Ledger API
// @version         1.0
// @description     In-memory ledger holding accounts and the transfers between them.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
func main() {
	app.Run()
}
