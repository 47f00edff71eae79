// Package auth provides authentication and tenant authorisation for Church Planner.
//
// It implements a 3-tier role model (user → admin → superadmin) with:
//   - Argon2id password hashing, with transparent upgrade of legacy bcrypt hashes
//   - A password policy that reports every failed rule, not just pass/fail
//   - Brute-force lockout as a pure state machine persisted atomically
//   - Signed, time-bound HS256 session tokens that are never stored server side
//   - Token extraction from header, cookie or query parameter in a fixed order
//   - A narrow identity context {AccountID, Role, TenantID} for downstream handlers
//   - A single tenant boundary check applied to every tenant-scoped resource
//
// Tenants are churches. Every business resource carries an owning tenant ID
// and a caller may only read or mutate resources of their own tenant, unless
// they hold the superadmin role.
//
// Lock expiry is lazy: an account whose lock window has passed is treated as
// unlocked with zero attempts the next time it is evaluated, so no background
// sweep is needed.
package auth
