// Package testing runs a mock StatsD server inside Go tests.
//
// New creates a server bound to an ephemeral loopback port. Start binds it
// and registers cleanup, so each test owns one instance:
//
//	func TestCheckout(t *testing.T) {
//	    mock := mockstatsd.New(t)
//	    addr := mock.Start()
//
//	    svc := checkout.New(checkout.Config{StatsDAddr: addr})
//	    svc.PlaceOrder()
//
//	    mock.AssertReceived(t, statsd.Name("orders.placed").Counter().WithTag("env", "test"))
//	    mock.AssertNotReceived(t, statsd.NameGlob("orders.failed*"))
//	}
//
// # Expectations
//
// Expect gives finer control over timing and counts:
//
//	mock.Expect(statsd.Name("retries")).Times(3).Within(2 * time.Second).ToArrive(t)
//	mock.Expect(statsd.Name("alerts")).Within(500 * time.Millisecond).NotToArrive(t)
//
// # Raw Calls and Aggregates
//
// AssertCall consumes one raw datagram, and AssertValue checks the folded
// value of a series:
//
//	mock.Client().Increment("hits")
//	mock.AssertCall(t, "hits:1|c")
//	mock.AssertValue(t, "hits", 1)
package testing
