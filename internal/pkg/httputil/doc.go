// Package httputil provides the JSON response helpers shared by the API
// handlers: workflow results, transport errors and request decoding.
package httputil
