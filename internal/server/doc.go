// Package server implements the CLM PRO setup backend: a small REST API over
// in-memory users and devices with cookie sessions.
//
// # Endpoints
//
//	POST /api/register           create account, start session (201)
//	POST /api/login              start session (200, 401 on bad credentials)
//	POST /api/logout             end session
//	GET  /api/user               session user (401 when anonymous)
//	PUT  /api/user/step          {"currentStep": n}
//	PUT  /api/user/subscription  {"paymentAdded": bool}
//	POST /api/devices            register a device (201)
//	GET  /api/devices            list the user's devices
//	PUT  /api/devices/{id}       partial device update
//	GET  /api/events             websocket stream of {"type","data"} events
//	GET  /health                 liveness and counts
//
// Errors are returned as {"message": "..."}.
//
// # Sessions
//
// The session cookie "clmsetup.sid" holds a random id and its HMAC-SHA256
// signature. Sessions live in memory for 30 days by default and are pruned
// periodically.
//
// # Configuration
//
// Settings come from the environment (optionally a .env file), see Config.
//
//	cfg, err := server.LoadConfig(".env")
//	srv, err := server.New(cfg)
//	err = srv.Run(ctx)
//
// When CLMSETUP_ADVERTISE is true the server announces itself over mDNS as
// "_clmsetup._tcp" so clm-setup can find it without a URL.
package server
