// Package tenant manages churches, the tenants of Church Planner.
//
// A church's ID is the tenant ID carried by accounts, events and audit
// entries. Creating a church as an unattached account makes that account
// the church's admin in the same transaction, so a church never exists
// without someone able to manage it.
package tenant
