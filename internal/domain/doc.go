// Package domain holds the request, option and error types shared by the PDF pipeline,
// plus the narrow contracts the pipeline uses to reach the browser and the template engine.
// Keep this package free of transport (HTTP) and infrastructure (Chrome/Redis) concerns.
package domain
