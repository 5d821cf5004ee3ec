package description

import (
	"context"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/artpar/topoplan/internal/core/topology"
)

// =============================================================================
// Docker Compose Import
// =============================================================================

// composeVarRegex matches ${VAR} and ${VAR:-default}; group 2 is set when a
// default is present.
var composeVarRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// FromCompose converts a Docker Compose file into a description.
//
//   - services become units, sorted by name
//   - depends_on becomes dependencies
//   - hostname becomes the service-discovery name
//   - deploy.resources.limits become cpu units (cores x 1024) and MiB
//   - published ports become tcp/udp load-balancer targets
//   - awslogs logging options become the unit's log stream prefix
//
// ${VAR} placeholders without a default are kept so they can be injected
// later; placeholders with a default are resolved to the default.
func FromCompose(content string) (*Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, topology.NewMalformedInputError("", "compose file is empty")
	}

	project, err := loadCompose(content)
	if err != nil {
		return nil, err
	}
	if len(project.Services) == 0 {
		return nil, topology.NewMalformedInputError("services", "compose file must define at least one service")
	}

	doc := &Document{Name: project.Name}
	for _, name := range slices.Sorted(maps.Keys(project.Services)) {
		svc := project.Services[name]
		unit, targets := convertService(svc)
		doc.Units = append(doc.Units, unit)
		doc.Targets = append(doc.Targets, targets...)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func loadCompose(content string) (*types.Project, error) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(content), &dict); err != nil || dict == nil {
		return nil, topology.NewMalformedInputError("", "invalid YAML syntax")
	}

	// Keep bare placeholders intact through interpolation.
	env := make(map[string]string)
	for _, m := range composeVarRegex.FindAllStringSubmatch(content, -1) {
		if m[2] == "" {
			env[m[1]] = "${" + m[1] + "}"
		}
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		WorkingDir: ".",
		ConfigFiles: []types.ConfigFile{
			{Filename: "compose.yaml", Content: []byte(content), Config: dict},
		},
		Environment: env,
	}, func(opts *loader.Options) {
		opts.SetProjectName("topoplan-import", false)
		opts.SkipNormalization = true
		opts.SkipExtends = true
		opts.SkipInclude = true
		opts.SkipConsistencyCheck = true
	})
	if err != nil {
		return nil, topology.NewMalformedInputError("", err.Error())
	}
	return project, nil
}

func convertService(svc types.ServiceConfig) (UnitSpec, []TargetSpec) {
	unit := UnitSpec{
		Name:        svc.Name,
		Image:       svc.Image,
		ServiceName: svc.Hostname,
		DependsOn:   slices.Sorted(maps.Keys(svc.DependsOn)),
	}

	for _, key := range slices.Sorted(maps.Keys(svc.Environment)) {
		var value string
		if v := svc.Environment[key]; v != nil {
			value = *v
		}
		unit.Environment = append(unit.Environment, EnvEntry{Key: key, Value: value})
	}

	// compose-go's NanoCPUs is the cpu count as a float
	if svc.Deploy != nil && svc.Deploy.Resources.Limits != nil {
		limits := svc.Deploy.Resources.Limits
		unit.CPU = int(float64(limits.NanoCPUs) * 1024)
		unit.Memory = int(int64(limits.MemoryBytes) / (1024 * 1024))
	}
	if svc.MemLimit > 0 {
		unit.ContainerMemory = int(int64(svc.MemLimit) / (1024 * 1024))
	}

	var targets []TargetSpec
	for _, p := range svc.Ports {
		proto := strings.ToLower(p.Protocol)
		if proto == "" {
			proto = string(topology.ProtocolTCP)
		}
		unit.Ports = append(unit.Ports, PortSpec{Port: int(p.Target), Protocol: proto})

		if p.Published == "" {
			continue
		}
		published, err := strconv.Atoi(p.Published)
		if err != nil {
			continue
		}
		targets = append(targets, TargetSpec{
			Unit:         svc.Name,
			Port:         int(p.Target),
			ListenerPort: published,
			Protocol:     proto,
		})
	}

	if svc.Logging != nil && svc.Logging.Driver == "awslogs" {
		if prefix := svc.Logging.Options["awslogs-stream-prefix"]; prefix != "" {
			unit.Logging = &LoggingSpec{StreamPrefix: prefix}
		}
	}

	return unit, targets
}
