// Package webchat is the chat gateway: it relays one user turn to the model,
// streams the reply back as plain text and commits finished turns to history.
//
// Routes mounted by Router:
//   - GET  /api/history?userId=...  persisted messages, oldest first
//   - POST /api/chat                streamed reply for one TurnRequest
//   - GET  /api/chat/ws             the same turn over a websocket
//   - GET  /healthz
package webchat
