package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"helmsman/internal/deploy"
	"helmsman/internal/fleet"
	"helmsman/internal/keys"
	"helmsman/internal/remote"
	"helmsman/internal/validators"
)

// Handler routes control-boundary commands into the registry and key
// manager. It owns input validation: nothing reaches the core until its
// shape has been checked.
type Handler struct {
	registry *fleet.Registry
	keys     *keys.Manager
	health   *Health
	log      *slog.Logger
}

func NewHandler(registry *fleet.Registry, km *keys.Manager, health *Health, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, keys: km, health: health, log: logger.With("component", "handler")}
}

// Handle executes one command and always returns an envelope; errors never
// propagate past this boundary.
func (h *Handler) Handle(ctx context.Context, cmd Command) (resp Response) {
	defer func() {
		// A panic from a command must not take the daemon down; only
		// registry-internal corruption is allowed to be fatal, and that is
		// raised deliberately, not recovered here.
		if rec := recover(); rec != nil {
			h.log.Error("command panicked", "type", cmd.Type, "panic", rec)
			resp = fail(fleet.Errorf(fleet.ClassInternal, "", "command %q failed internally", cmd.Type))
		}
	}()

	switch cmd.Type {
	case "add-host":
		return h.addHost(cmd)
	case "remove-host":
		return h.removeHost(cmd)
	case "list-hosts":
		return ok(h.registry.List())
	case "get-host":
		return h.getHost(cmd)
	case "set-tags":
		return h.setTags(cmd)
	case "connect":
		return h.connect(ctx, cmd)
	case "disconnect":
		return h.disconnect(cmd)
	case "test-connection":
		return h.testConnection(ctx, cmd)
	case "detect-deploy-paths":
		return h.detectPaths(ctx, cmd)
	case "setup-permissions":
		return h.setupPermissions(ctx, cmd)
	case "create-git-hooks":
		return h.createHooks(ctx, cmd)
	case "direct-deploy":
		return h.deploy(ctx, cmd)
	case "deploy-status":
		return h.deployStatus(cmd)
	case "host-metrics":
		return h.hostMetrics(ctx, cmd)
	case "host-logs":
		return h.hostLogs(ctx, cmd)
	case "generate-key":
		return h.generateKey(cmd)
	case "import-key":
		return h.importKey(cmd)
	case "list-keys":
		return h.listKeys()
	case "delete-key":
		return h.deleteKey(cmd)
	case "status":
		return ok(h.health.Snapshot(h.registry))
	default:
		return fail(fleet.Errorf(fleet.ClassValidation, "", "unknown command %q", cmd.Type))
	}
}

func fail(err error) Response {
	payload := &ErrorPayload{
		Classification: string(fleet.ClassOf(err)),
		Message:        err.Error(),
	}
	var ce *fleet.Error
	if errors.As(err, &ce) {
		payload.Entity = ce.Entity
		payload.Message = ce.Message
	}
	return Response{Success: false, Error: payload}
}

// decode unmarshals command args into the command's typed shape.
func decode[T any](cmd Command) (T, error) {
	var args T
	if len(cmd.Args) == 0 {
		return args, fleet.Errorf(fleet.ClassValidation, "", "command %q requires arguments", cmd.Type)
	}
	if err := json.Unmarshal(cmd.Args, &args); err != nil {
		return args, fleet.Errorf(fleet.ClassValidation, "", "malformed arguments: %v", err)
	}
	return args, nil
}

func (h *Handler) addHost(cmd Command) Response {
	args, err := decode[addHostArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	if err := validators.Address(args.Address); err != nil {
		return fail(err)
	}
	if err := validators.Port(args.Port); err != nil {
		return fail(err)
	}
	if args.Username == "" {
		return fail(fleet.Errorf(fleet.ClassValidation, args.ID, "username is required"))
	}
	if args.KeyPath != "" {
		if err := validators.RemotePath(args.KeyPath); err != nil {
			return fail(err)
		}
	}
	name := args.Name
	if name == "" {
		name = args.ID
	}
	host, err := h.registry.Add(fleet.AddHostSpec{
		ID:       args.ID,
		Name:     name,
		Address:  args.Address,
		Port:     args.Port,
		Username: args.Username,
		Password: args.Password,
		KeyPath:  args.KeyPath,
		Tags:     args.Tags,
	})
	if err != nil {
		return fail(err)
	}
	return ok(host)
}

func (h *Handler) removeHost(cmd Command) Response {
	args, err := decode[hostArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	if err := h.registry.Remove(args.ID); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func (h *Handler) getHost(cmd Command) Response {
	args, err := decode[hostArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	host, err := h.registry.Get(args.ID)
	if err != nil {
		return fail(err)
	}
	return ok(host)
}

func (h *Handler) setTags(cmd Command) Response {
	args, err := decode[tagArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	if err := h.registry.SetTags(args.ID, args.Tags); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func (h *Handler) connect(ctx context.Context, cmd Command) Response {
	args, err := decode[hostArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	ch, err := h.registry.Connect(ctx, args.ID)
	if err != nil {
		return fail(err)
	}
	res := <-ch
	if res.Err != nil {
		return fail(res.Err)
	}
	return ok(res.Host)
}

func (h *Handler) disconnect(cmd Command) Response {
	args, err := decode[hostArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	if err := h.registry.Disconnect(args.ID); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func (h *Handler) testConnection(ctx context.Context, cmd Command) Response {
	args, err := decode[hostArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	res, err := h.registry.Test(ctx, args.ID)
	if err != nil {
		// The classified failure is the interesting payload here: the
		// caller gets both the result and the classification.
		resp := fail(err)
		resp.Data = res
		return resp
	}
	return ok(res)
}

func (h *Handler) detectPaths(ctx context.Context, cmd Command) Response {
	args, err := decode[hostArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	cands, err := h.registry.DetectPaths(ctx, args.ID)
	if err != nil {
		return fail(err)
	}
	return ok(cands)
}

func (h *Handler) setupPermissions(ctx context.Context, cmd Command) Response {
	args, err := decode[permissionArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	if err := validators.RemotePath(args.Path); err != nil {
		return fail(err)
	}
	if err := validators.Mode(args.Mode); err != nil {
		return fail(err)
	}
	if args.Owner == "" && args.Mode == "" {
		return fail(fleet.Errorf(fleet.ClassValidation, args.ID, "owner or mode is required"))
	}
	res, err := h.registry.SetupPermissions(ctx, args.ID, args.Path, remote.PermissionSpec{
		Owner:     args.Owner,
		Group:     args.Group,
		Mode:      args.Mode,
		Recursive: args.Recursive,
	})
	if err != nil {
		resp := fail(err)
		resp.Data = res
		return resp
	}
	return ok(res)
}

func (h *Handler) createHooks(ctx context.Context, cmd Command) Response {
	args, err := decode[hookArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	if err := validators.RemotePath(args.RepoPath); err != nil {
		return fail(err)
	}
	if len(args.Hooks) == 0 {
		return fail(fleet.Errorf(fleet.ClassValidation, args.ID, "at least one hook is required"))
	}
	hooks := make([]remote.Hook, 0, len(args.Hooks))
	for _, spec := range args.Hooks {
		if err := validators.HookName(spec.Name); err != nil {
			return fail(err)
		}
		if err := validators.Command(spec.Content); err != nil {
			return fail(err)
		}
		hooks = append(hooks, remote.Hook{Name: spec.Name, Content: spec.Content})
	}
	outcomes, err := h.registry.InstallHooks(ctx, args.ID, args.RepoPath, hooks)
	if err != nil {
		return fail(err)
	}
	return ok(outcomes)
}

func (h *Handler) deploy(ctx context.Context, cmd Command) Response {
	args, err := decode[deployArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	if err := validators.RemotePath(args.RepoPath); err != nil {
		return fail(err)
	}
	if args.BuildCommand != "" {
		if err := validators.Command(args.BuildCommand); err != nil {
			return fail(err)
		}
	}
	ch, err := h.registry.Deploy(ctx, args.ID, deploy.Request{
		RepoPath:     args.RepoPath,
		RepoURL:      args.RepoURL,
		Branch:       args.Branch,
		BuildCommand: args.BuildCommand,
		PreDeploy:    args.PreDeploy,
		PostDeploy:   args.PostDeploy,
	})
	if err != nil {
		return fail(err)
	}
	res := <-ch
	if !res.Success {
		class := res.Class
		if class == "" {
			class = fleet.ClassRemoteExecution
		}
		resp := fail(fleet.Errorf(class, args.ID, "%s", res.Error))
		resp.Data = res
		return resp
	}
	return ok(res)
}

func (h *Handler) deployStatus(cmd Command) Response {
	args, err := decode[hostArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	host, err := h.registry.Get(args.ID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{
		"state":       host.Deploy,
		"last_deploy": host.LastDeploy,
	})
}

func (h *Handler) hostMetrics(ctx context.Context, cmd Command) Response {
	args, err := decode[hostArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	if err := h.registry.RefreshMetrics(ctx, args.ID); err != nil {
		return fail(err)
	}
	host, err := h.registry.Get(args.ID)
	if err != nil {
		return fail(err)
	}
	return ok(host.Metrics)
}

func (h *Handler) hostLogs(ctx context.Context, cmd Command) Response {
	args, err := decode[logsArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := validators.HostID(args.ID); err != nil {
		return fail(err)
	}
	if err := h.registry.RefreshLogs(ctx, args.ID, args.Lines); err != nil {
		return fail(err)
	}
	host, err := h.registry.Get(args.ID)
	if err != nil {
		return fail(err)
	}
	return ok(host.LogTail)
}

func (h *Handler) generateKey(cmd Command) Response {
	args, err := decode[generateKeyArgs](cmd)
	if err != nil {
		return fail(err)
	}
	rec, err := h.keys.Generate(args.Name, args.Algorithm, args.Bits)
	if err != nil {
		return fail(err)
	}
	return ok(rec)
}

func (h *Handler) importKey(cmd Command) Response {
	args, err := decode[importKeyArgs](cmd)
	if err != nil {
		return fail(err)
	}
	rec, err := h.keys.Import(args.Name, args.Path)
	if err != nil {
		return fail(err)
	}
	return ok(rec)
}

func (h *Handler) listKeys() Response {
	recs, err := h.keys.List()
	if err != nil {
		return fail(err)
	}
	return ok(recs)
}

func (h *Handler) deleteKey(cmd Command) Response {
	args, err := decode[keyArgs](cmd)
	if err != nil {
		return fail(err)
	}
	if err := h.keys.Delete(args.Name); err != nil {
		return fail(err)
	}
	return ok(nil)
}
