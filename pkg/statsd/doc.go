// Package statsd implements a mock StatsD server for tests.
//
// A Server listens for UDP datagrams from the system under test, decodes the
// StatsD line protocol (with DogStatsD tag syntax), records every metric it
// receives, and lets test code wait for, or rule out, specific metrics:
//
//	srv := statsd.New(statsd.DefaultConfig())
//	addr, err := srv.Start(ctx)
//	if err != nil {
//		t.Fatal(err)
//	}
//	defer srv.Stop()
//
//	// point the system under test at addr, then:
//	res := srv.Verify(ctx, statsd.Name("requests.count").Counter().WithTag("env", "test"), time.Second)
//	if !res.Passed {
//		t.Fatal(res.Message)
//	}
//
// Verifications never consume records, so any number of concurrent waiters
// can match the same metric.
package statsd
