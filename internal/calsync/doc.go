// Package calsync copies a user's calendar events into the store.
//
// For every active calendar account the synchronizer refreshes credentials,
// fetches the upcoming window from the calendar provider and upserts each
// event inside one transaction per account, detecting its meeting link on
// the way. Once the account committed, agents are optionally created for
// events that have a link and recording enabled.
package calsync
