// Package vendormemory keeps the canonical account each vendor is booked to
// and flags rows that disagree with it. State is one JSON object of vendor
// key to account, stored through kvstore (vendor_accounts.json by default).
package vendormemory
