// Package id provides 128-bit time-derived identifiers (TimeIDs) and the
// validated 48-bit and 64-bit hardware addresses they embed.
//
// # Overview
//
// A TimeID uses the RFC 4122 layout: a 60-bit tick count (100ns intervals
// since 1582-10-15 UTC), a 48-bit node address and a 14-bit payload, tagged
// with version 1 and the Leach-Salz variant. The package provides:
//
//   - EUI48 and EUI64 parsing, canonical text and ordering
//   - TimeID construction, field accessors, text and binary forms
//   - Generators that never issue the same TimeID twice on one node
//   - Node providers: static, network interface, random, stored in a
//     Backend (filesystem, S3, MinIO, GCS), or leased from Redis
//   - database/sql and pgx integration
//   - Structured logging (zap) and Prometheus metrics
//
// # Quick Start
//
//	node := id.MustParseEUI48("01:23:45:67:89:ab")
//	gen, err := id.NewGenerator(node, nil, id.GeneratorConfig{Payload: 7}, nil, nil)
//	if err != nil {
//	    return err
//	}
//
//	t, _ := gen.Next(ctx)
//	fmt.Println(t)             // 5c3a91e0-a8b2-11ef-8007-0123456789ab
//	fmt.Println(t.Time())      // wall clock time of the tick
//	fmt.Println(t.NodeEUI48()) // 01:23:45:67:89:ab
//
// Addresses accept ':' or '.' separators and either case:
//
//	a, _ := id.ParseEUI48("0123.4567.89AB")
//	a.String()              // "01:23:45:67:89:ab"
//	a.StringNoPunctuation() // "0123456789ab"
//
// # Ordering
//
// TimeIDs compare by their time field, then their clock-seq-and-node field,
// both unsigned. The low bits of the tick sit in the high bits of the time
// field, so this is not generation order. Use Tick to sort by time.
//
// # Node Allocation
//
// Two processes that share a node address and a tick produce the same
// TimeID. In a fleet, lease nodes from Redis:
//
//	client := redis.NewClient(id.RedisOptions())
//	alloc, _ := id.NewRedisNodeAllocator(client, id.DefaultAllocatorConfig(), logger, metrics)
//	gen, _ := id.NewGeneratorFromProvider(ctx, alloc, nil, id.GeneratorConfig{}, logger, metrics)
//	go alloc.KeepAlive(ctx)
//	defer alloc.Release(context.Background())
//
// Allocated nodes are locally administered unicast addresses under a 24-bit
// prefix (02:00:00 by default). A node whose lease is still held is skipped.
//
// Single machines can keep a node across restarts in any Backend:
//
//	backend := id.NewFilesystemBackend("./data")
//	provider := id.NewStoredNode(backend, id.DefaultNodeKey, nil, logger, metrics)
//
// # Error Handling
//
// Parse failures return *ParseError, which matches ErrInvalidFormat:
//
//	if _, err := id.ParseTimeID(s); id.IsInvalidFormat(err) {
//	    // reject input
//	}
//
// Other failures wrap sentinel errors (ErrTickRange, ErrNodeExhausted,
// ErrLockHeld, ErrBackendUnavailable) and can carry context via WithContext.
//
// # Observability
//
//	logger, _ := id.NewProductionZapLogger()
//	metrics := id.NewPrometheusMetrics(prometheus.NewRegistry())
//	http.Handle("/metrics", metrics.Handler())
//
// # Wire Server
//
// cmd/idserver serves SELECT new_timeid() and the timeid_* accessors over the
// PostgreSQL wire protocol, so any PostgreSQL client can request identifiers.
package id
