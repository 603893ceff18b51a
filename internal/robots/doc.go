// Package robots gates crawl tasks on robots.txt rules.
//
// A Gate fetches {scheme}://{host}/robots.txt at most once per host for the
// lifetime of the process. Concurrent tasks targeting the same host share
// one in-flight fetch through a singleflight group, and the parsed policy
// is cached without expiry since a crawl run is bounded in time.
//
// The gate fails closed: a network error, a non-2xx status (a missing
// robots.txt included) or an unparsable body denies every path on the
// host. WithFailOpen switches the fallback to allow-all.
//
// With compliance disabled the gate allows everything and never touches
// the network.
package robots
