package main

import "rolegate/internal/app"

// @title           rolegate API
// @version         1.0
// @description     CAPTCHA-gated role verification for a Discord community.
// @BasePath        /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	app.Run()
}
