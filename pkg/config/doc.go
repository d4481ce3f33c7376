// Package config loads the extraction job configuration.
//
// A job is described by one YAML file. Before parsing, ${VAR} and
// ${VAR:-default} references are replaced with environment values, so
// credentials can stay out of the file:
//
//	username: ${JIRA_USER}
//	password: ${JIRA_TOKEN}
//	uri: https://example.atlassian.net
//	jql: project = PROJ ORDER BY created
//	retry_limit: 5
//	retry_initial_wait_sec: 1
//	columns:
//	  - {name: key, type: string}
//	  - {name: fields.created, type: timestamp, format: "2006-01-02T15:04:05.000-0700"}
//	sink:
//	  type: jsonl
//	  path: out/issues.jsonl.zst
//	  compression: zstd
//
// Defaults are applied after parsing and Validate reports the first
// problem as a config error. Overlay applies JIRA_EXTRACT_* environment
// variables and command line flags bound through viper.
//
// # Usage
//
//	cfg, err := config.Load("job.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(extract.ModeRun); err != nil {
//		log.Fatal(err)
//	}
package config
