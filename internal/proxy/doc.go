// Package proxy is the relay's HTTP front. API requests are forwarded to
// the backend; when the backend is unreachable, queueable writes are
// captured into the offline queues and acknowledged with a synthesized
// 202, reads get a synthesized 503, and static assets fall back to the
// precached copies in the store. The control channel rides on a local
// endpoint outside the API namespace.
package proxy
