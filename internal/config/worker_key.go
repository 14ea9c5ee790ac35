package config

type WorkerKeyStruct struct {
	ViolationJournalQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ViolationJournalQueue: "violation_journal_queue",
}
