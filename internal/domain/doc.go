// Package domain defines the value types shared by the subscriber gateway:
// the inbound SubscriberInput and the CRM-owned Subscriber and MarketingList
// records.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Pure helper methods on the types are allowed
package domain
