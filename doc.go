// Package jiraextract extracts Jira issues matched by a JQL query into
// typed rows and delivers them to a sink.
//
// # Architecture
//
// A job runs in one of three modes:
//
//  1. Guess: fetch 10 issues and infer a column list from them.
//  2. Preview: fetch 15 issues, cast them and hand them to a sink.
//  3. Run: verify the credential, read the total count and walk the result
//     in windows of 50, casting and appending every issue.
//
// Every remote call goes through a retry policy with exponential backoff
// (initial wait plus 2^attempt seconds). Configuration, authentication,
// data and sink errors are never retried.
//
// # Quick Start
//
//	jira-extract guess --config job.yaml --write
//	jira-extract preview --config job.yaml
//	jira-extract run --config job.yaml --metrics-addr :9090
//
// A minimal job file:
//
//	username: ${JIRA_USER}
//	password: ${JIRA_TOKEN}
//	uri: https://example.atlassian.net
//	jql: project = PROJ
//	columns:
//	  - {name: key, type: string}
//	  - {name: fields.created, type: timestamp, format: "2006-01-02T15:04:05.000-0700"}
//	sink:
//	  type: jsonl
//	  path: issues.jsonl.zst
//	  compression: zstd
//
// # Key Packages
//
//	pkg/retry       - Retry policy with typed non-retryable errors
//	pkg/pagination  - Page windows and bounded fetches
//	pkg/schema      - Column specs, casting and type guessing
//	pkg/extract     - The extraction job and its three modes
//	pkg/jira        - Jira REST search client
//	pkg/sink        - Sink registry: files, databases, queues, object stores
//	pkg/config      - YAML job configuration with ${VAR} substitution
//	pkg/observability - Prometheus metrics, tracing and resource snapshots
//
// # Sinks
//
// File sinks: csv, jsonl, arrow, avro, stdout. Any file sink can be
// compressed (gzip, zstd, snappy, s2, lz4, deflate) and uploaded to S3 or
// GCS when it finishes.
//
// Database and queue sinks: postgres, mysql, snowflake, mongodb, bigquery,
// kafka.
package jiraextract
