// Package audit keeps an append-only JSON lines record of every run
// decision: plugins refused before spawning, backends that failed to start
// and completed runs with their return code and report.
//
//	logger, err := audit.NewFileLogger(audit.FileLoggerConfig{Path: "reports/.audit/audit.log"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
// The file is rotated to audit-{stamp}.log once it exceeds MaxSize and the
// oldest rotated files beyond MaxFiles are removed.
package audit
