// Package services defines the [Repository] interface for the object store a run audits and implements it for the
// Fedora Commons 3.x REST API.
//
// # Repository Interface
//
// The pipeline only needs a handful of remote operations: fetch an object, list its datastreams, read a datastream
// profile (optionally as of a version date), list a datastream's history, ask the repository to validate a stored
// checksum, change a datastream's checksum type, and enumerate object ids.
//
// Sessions are not shared between goroutines. Each worker and the coordinator open their own through a
// [SessionFactory].
//
// # Fedora Implementation
//
// [FedoraService] talks XML to API-A and API-M:
//   - GET /objects/{pid}?format=xml
//   - GET /objects/{pid}/datastreams?format=xml
//   - GET /objects/{pid}/datastreams/{dsid}?format=xml[&asOfDateTime=][&validateChecksum=true]
//   - GET /objects/{pid}/datastreams/{dsid}/history?format=xml
//   - PUT /objects/{pid}/datastreams/{dsid}?checksumType=&logMessage=
//   - GET /objects?query=pid~*&pid=true&resultFormat=xml (paged with sessionToken)
//   - GET /risearch?type=tuples&lang=sparql&format=CSV (content model discovery)
//
// Authentication is HTTP basic auth, or a static bearer token through an [oauth2.Transport].
// All sessions opened from one service share a single [rate.Limiter].
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrUnauthorized] : 401 or 403
//   - [shared.ErrObjectNotFound], [shared.ErrDatastreamNotFound] : 404
//   - [shared.ErrServiceUnavailable] : 5xx
//   - [shared.ErrAPIRequest] : any other failed request
//   - [shared.ErrHistoryUnavailable] : version history could not be listed
//   - [shared.ErrSaveFailed] : checksum type could not be saved
package services
