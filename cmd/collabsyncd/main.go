// Command collabsyncd wires the synchronization core's components together
// behind a small set of diagnostic subcommands. The binary itself holds no
// business logic, only flag parsing and collaborator wiring.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/getflowy/collabsync/internal/catchup"
	"github.com/getflowy/collabsync/internal/collab/fake"
	"github.com/getflowy/collabsync/internal/config"
	"github.com/getflowy/collabsync/internal/duplicate"
	"github.com/getflowy/collabsync/internal/model"
	"github.com/getflowy/collabsync/internal/observer"
	"github.com/getflowy/collabsync/internal/protocol"
	"github.com/getflowy/collabsync/internal/seqtracker"
	"github.com/getflowy/collabsync/internal/sink"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Config is the root flag group shared by every subcommand.
var Config = new(struct {
	Sync config.SyncConfig `group:"Sync" namespace:"sync" env-namespace:"SYNC"`
	Log  config.LogConfig  `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

// cmdDemo runs one or more Observers concurrently, each over its own
// in-memory fake replica and a stream that closes immediately, proving
// out component wiring (A, B, C, D, E) without a real transport or CRDT
// library. Count > 1 exercises the same errgroup.WithContext fan-out the
// core itself would use to run many SyncObjects side by side.
type cmdDemo struct {
	ObjectID    string `long:"object-id" default:"demo-doc" description:"SyncObject id prefix to demo"`
	WorkspaceID string `long:"workspace-id" default:"demo-ws" description:"Workspace id to demo"`
	Count       int    `long:"count" default:"1" description:"Number of Observers to run concurrently"`
}

func (cmd *cmdDemo) Execute([]string) error {
	if err := Config.Log.Apply(); err != nil {
		return err
	}

	var group, ctx = errgroup.WithContext(context.Background())

	for i := 0; i < cmd.Count; i++ {
		var objectID = cmd.ObjectID
		if cmd.Count > 1 {
			objectID = fmt.Sprintf("%s-%d", cmd.ObjectID, i)
		}
		group.Go(func() error { return runDemoObserver(ctx, objectID, cmd.WorkspaceID) })
	}

	return group.Wait()
}

// runDemoObserver wires and runs a single Observer to completion, exactly
// as a production caller would wire one against its own replica and
// transport implementations.
func runDemoObserver(ctx context.Context, objectID, workspaceID string) error {
	var object = model.SyncObject{ObjectID: objectID, WorkspaceID: workspaceID, CollabType: model.CollabTypeDocument}
	var entry = log.WithField("cmd", "demo").WithField("object_id", objectID)

	var replica = fake.NewReplica()
	var weakReplica = fake.NewWeakRef(replica)
	var tracker = seqtracker.NewWithStrikeLimit(Config.Sync.StrikeLimit)
	var sk = sink.New(tracker, entry)
	var engine = protocol.New(demoDecoder, sk, entry)
	var scheduler = catchup.New(demoEncoder, entry)

	var obs = observer.New(object, model.EmptyOrigin, weakReplica.Weak(), observer.Strong(sk), tracker, engine, scheduler, Config.Sync.Debounce, entry)

	entry.Info("starting demo observer")
	return obs.Run(ctx, eofStream{})
}

// cmdDuplicate invokes the Publish Duplicator against in-memory
// collaborators, since this core treats storage, the group manager, and the
// published-data source as external collaborators it never implements.
// A real deployment links its own implementations of those
// interfaces in place of internal/collab/fake.
type cmdDuplicate struct {
	SourceView string `long:"source-view" required:"true" description:"Published view id to duplicate"`
	DestParent string `long:"dest-parent" required:"true" description:"Destination parent view id"`
	Workspace  string `long:"workspace" required:"true" description:"Destination workspace id"`
	Actor      string `long:"actor" default:"cli-user" description:"Acting user id"`
}

func (cmd *cmdDuplicate) Execute([]string) error {
	if err := Config.Log.Apply(); err != nil {
		return err
	}
	log.Warn("no production storage/group/publish-source collaborators are wired into this binary; this command only demonstrates wiring and will report RecordNotFound against the empty in-memory fakes")

	var storage = fake.NewStorage()
	var groups = fake.NewGroupManager()
	var publishSrc = fake.NewPublishSource()
	var folder = fake.NewFolderMutator()
	var wsdb = fake.NewWorkspaceDatabaseMutator()

	var dup = duplicate.New(storage, groups, publishSrc, folder, wsdb, log.WithField("cmd", "duplicate"))
	return dup.Duplicate(context.Background(), cmd.Workspace, cmd.DestParent, cmd.Actor, cmd.SourceView, model.CollabTypeDocument)
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	if _, err := parser.AddCommand("demo", "Run a local demo observer loop",
		"Wires the sync core against an in-memory fake replica and stream, then exits", &cmdDemo{}); err != nil {
		log.WithError(err).Fatal("failed to add demo command")
	}
	if _, err := parser.AddCommand("duplicate", "Duplicate a published view",
		"Invokes the Publish Duplicator against in-memory collaborators", &cmdDuplicate{}); err != nil {
		log.WithError(err).Fatal("failed to add duplicate command")
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
