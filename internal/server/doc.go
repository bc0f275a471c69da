// Package server implements the HTTP and WebSocket side of exchangechat.
//
// The Hub is the registry of live connections and the broadcaster every
// outbound line goes through. Each connection is a Client whose read loop
// hands lines to the Dispatcher, which relays chat text and answers exchange
// commands from the rate provider.
package server
