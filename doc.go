// Package authgate provides token based authentication and per call
// authorization for a user resource API, independent of transport.
//
// Login:
//   - Auther.Login runs the "local" strategy (email and password checked by
//     UserProvider against bcrypt hashes) or the "jwt" strategy (a previously
//     issued token re-validated). Unknown emails and wrong passwords fail with
//     the same ErrInvalidCredentials.
//   - TokenServiceImpl signs HMAC JWTs carrying aud, exp, iat, iss, jti, sub and
//     userId. Validation checks the signature over the received bytes before
//     any claim is read.
//
// Gate:
//   - Gateway.Call verifies the call's token once, then runs the method's
//     hooks (Authenticate, RestrictToAuthenticated, RestrictToOwner). A
//     rejection is terminal for the call and is reported to the ActivitySink.
//   - The rest and socket transports translate their wire formats into Call
//     values; the Session type holds the per connection login of the socket
//     transport.
//
// Activity sinks:
//   - ActivitySink receives login, logout and gate rejection events. Sinks run
//     best-effort (errors are logged) so they never block authentication.
package authgate
