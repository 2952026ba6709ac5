// Package auth is an embeddable identity and access core for multi-tenant
// applications.
//
// Tenancy:
//   - Users are not global principals. A UserAccount binds a User to one
//     Organisation and one Establishment together with a set of Roles, and the
//     account is what sessions and claims resolve through. The same person can
//     hold different roles in different tenants.
//
// Sessions:
//   - Authenticator signs an HS256 JWT whose subject is the account id and
//     persists a Session keyed by the token. At most one live session exists per
//     account; a new login supersedes the previous one, and deleting the session
//     is what logs a user out.
//
// Claims:
//   - Roles own an ordered list of Claims written as action:scope:resource.
//     The admin action and the admin scope are wildcards for their resource.
//
// Action tokens:
//   - ActionTokenService issues single use tokens carrying a bitmask of
//     lifecycle actions (invite, validate email, reset or change password,
//     accept terms or privacy policy, change email). AuthService composes them
//     into the sign up, invitation and acceptance flows.
//
// Wiring:
//   - OpenDB opens a postgres or sqlite *bun.DB and Migrate applies the
//     embedded schema for its dialect. New builds every service over the
//     database from a Config, Bootstrap seeds tenants, roles and the admin
//     user. ExpirySweeper removes expired sessions and action tokens in the
//     background.
package auth
