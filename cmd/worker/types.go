package main

// Canned bodies for RUN_LOCAL; LOCAL_SQS_BODY overrides them.
const (
	localOrderLocation = "https://api.software.madkting.com/shops/1087841/marketplace/13/orders/6777870536462/"
	localIngestBody    = `{"location": "` + localOrderLocation + `"}`
	localReconcileBody = `{"reference": "6777870536462"}`
)

const (
	RoleIngest    = "ingest"
	RoleReconcile = "reconcile"
	RoleSweep     = "sweep"
	RolePoll      = "poll"
)
