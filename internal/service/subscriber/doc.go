// Package subscriber implements the subscriber reconciliation workflow.
//
// Every mutating operation validates the submitted fields first, then
// fetches whatever comparison data it needs from the CRM (existing
// subscribers, the marketing-list catalog), applies the cross-record rules
// (duplicate email, list existence, consent) and only then issues the single
// CRM write. Each operation returns an Outcome; nothing is thrown past the
// service boundary.
//
// The service depends on the Gateway and Index interfaces defined in
// repository.go. It never imports net/http or database/sql directly.
package subscriber
