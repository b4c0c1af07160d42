package config

type WorkerKeyStruct struct {
	PersistSecurityEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistSecurityEventsQueue: "persist_security_events_queue",
}
