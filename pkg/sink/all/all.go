// Package all registers every built-in sink and uploader.
package all

import (
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/arrow"     // arrow
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/avro"      // avro
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/bigquery"  // bigquery
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/csv"       // csv
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/gcs"       // gcs uploads
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/jsonl"     // jsonl
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/kafka"     // kafka
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/mongodb"   // mongodb
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/mysql"     // mysql
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/postgres"  // postgres
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/s3"        // s3 uploads
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/snowflake" // snowflake
	_ "github.com/ajitpratap0/jira-extract/pkg/sink/stdout"    // stdout
)
