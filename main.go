// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("service-feedback - Offline-First Feedback Pipeline")
	fmt.Println("==================================================")
	fmt.Println()
	fmt.Println("service-feedback captures feedback on intermittently-offline kiosk devices,")
	fmt.Println("persists every submission durably before any network attempt, and delivers it")
	fmt.Println("to a collector with at-least-once semantics and client-side deduplication ids.")
	fmt.Println()

	fmt.Println("📦 Packages:")
	fmt.Println()
	fmt.Println("  kioskqueue/  - Device-side durable queue: SQLite storage, device identity,")
	fmt.Println("                 exponential backoff, sync passes, retention cleanup, status.")
	fmt.Println("  collector/   - Server side: ingestion endpoint, Postgres outbox, consumer,")
	fmt.Println("                 dashboard summary, device-token auth.")
	fmt.Println()

	fmt.Println("🚀 Examples:")
	fmt.Println()
	fmt.Println("1. Collector server (examples/collector_server/)")
	fmt.Println("   Ingestion + outbox consumer + summary API over Postgres")
	fmt.Println("   Run: DATABASE_URL=postgres://... go run ./examples/collector_server")
	fmt.Println()
	fmt.Println("2. Kiosk simulator (examples/kiosk_flow/)")
	fmt.Println("   Submits feedback offline, then reconnects and drains the queue")
	fmt.Println("   Run: go run ./examples/kiosk_flow")
	fmt.Println()
}
