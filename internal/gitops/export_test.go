package gitops

var GitBlobSHA = gitBlobSHA
