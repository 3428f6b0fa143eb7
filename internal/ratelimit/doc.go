// Package ratelimit paces outbound calls per service with token
// buckets. Local keeps buckets in process memory; Distributed shares
// them through Redis and fails open when Redis is unavailable, so a
// broken supporting store degrades to unthrottled traffic instead of
// an outage.
package ratelimit
