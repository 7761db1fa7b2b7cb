// Package secret resolves configuration values that hold credentials.
//
// Values may reference the environment (${VAR}, expanded strictly) or a
// provider through the "secretref:" prefix:
//
//	baseURL: https://${API_HOST}/api/authserver
//	headers:
//	  X-Api-Key: secretref:env:API_KEY
//	  X-Client-Secret: secretref:file:client_secret
//
// The env and file providers are registered in DefaultRegistry.
package secret
