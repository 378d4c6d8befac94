package main

// General API documentation for swaggo. Build with -tags=swagger to serve it.
//
// @title           sitecnd API
// @version         1.0
// @description     Local daemon that themes web sites with an on-device model.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
