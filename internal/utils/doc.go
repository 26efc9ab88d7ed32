// Package utils provides input validation helpers shared by the HTTP
// handlers: identifier formats and payload size/depth bounds.
package utils
