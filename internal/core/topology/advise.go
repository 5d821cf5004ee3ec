package topology

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/artpar/topoplan/internal/core/fargate"
)

// =============================================================================
// Advisory Checks
// =============================================================================

// hostRefRegex matches "scheme://host" and "host:port" references.
var hostRefRegex = regexp.MustCompile(`://([A-Za-z0-9][A-Za-z0-9_.-]*)|([A-Za-z0-9][A-Za-z0-9_.-]*):\d{1,5}\b`)

// logRetentionDays are the retention periods CloudWatch Logs accepts.
// Zero means the logs never expire.
var logRetentionDays = []int{0, 1, 3, 5, 7, 14, 30, 60, 90, 120, 150, 180, 365, 400, 545, 731, 1096, 1827, 2192, 2557, 2922, 3288, 3653}

// secretKeyMarkers are environment key fragments treated as secret-bearing.
var secretKeyMarkers = []string{"PASSWORD", "PASSWD", "SECRET", "TOKEN", "LICENSE_KEY", "API_KEY", "PRIVATE_KEY"}

// Advise reports advisory findings about a validated graph. It never fails.
//
// Per unit, in insertion order:
//   - cpu/memory not a supported Fargate combination
//   - container memory limit above the task memory
//   - environment values referencing another unit that is not a transitive
//     dependency, so it may not be up yet
//   - secret-looking keys with literal values
//   - ${VAR} placeholders nothing resolved
//   - health checks on an unbound port or with a relative path
//   - log settings without a stream prefix or with an unsupported retention
func Advise(g *Graph) []Warning {
	units := g.Units()

	owner := make(map[string]string)
	for _, u := range units {
		owner[u.Name] = u.Name
	}
	for _, u := range units {
		if u.ServiceName != "" {
			if _, taken := owner[u.ServiceName]; !taken {
				owner[u.ServiceName] = u.Name
			}
		}
	}

	var warnings []Warning
	for _, u := range units {
		if u.Resources.CPU > 0 && u.Resources.MemoryMiB > 0 {
			if err := fargate.Validate(u.Resources.CPU, u.Resources.MemoryMiB); err != nil {
				msg := fmt.Sprintf("unit %q: %s", u.Name, err)
				if cpu, mem, ok := fargate.Smallest(u.Resources.CPU, u.Resources.MemoryMiB); ok {
					msg += fmt.Sprintf("; smallest valid size is cpu %d with %d MiB", cpu, mem)
				}
				warnings = append(warnings, Warning{
					Kind:    WarningInvalidSizing,
					Message: msg,
					Units:   []string{u.Name},
				})
			}
		}

		if u.ContainerMemoryMiB > 0 && u.Resources.MemoryMiB > 0 && u.ContainerMemoryMiB > u.Resources.MemoryMiB {
			warnings = append(warnings, Warning{
				Kind: WarningContainerMemory,
				Message: fmt.Sprintf("unit %q: container memory limit %d MiB exceeds task memory %d MiB",
					u.Name, u.ContainerMemoryMiB, u.Resources.MemoryMiB),
				Units: []string{u.Name},
			})
		}

		reported := make(map[string]bool)
		for _, e := range u.Environment {
			for _, host := range referencedHosts(e.Value) {
				target, ok := owner[host]
				if !ok {
					target, ok = owner[strings.SplitN(host, ".", 2)[0]]
				}
				if !ok || target == u.Name || reported[target] {
					continue
				}
				if g.DependsTransitively(u.Name, target) {
					continue
				}
				reported[target] = true
				warnings = append(warnings, Warning{
					Kind: WarningUndeclaredReference,
					Message: fmt.Sprintf("unit %q references %q in %s but does not depend on unit %q",
						u.Name, host, e.Key, target),
					Units: []string{u.Name, target},
				})
			}
		}

		for _, e := range u.Environment {
			if e.Injected || e.Value == "" || !isSecretKey(e.Key) {
				continue
			}
			if len(Placeholders(e.Value)) > 0 {
				continue
			}
			warnings = append(warnings, Warning{
				Kind:    WarningPlaintextSecret,
				Message: fmt.Sprintf("unit %q: %s has a literal value; inject it from configuration instead", u.Name, e.Key),
				Units:   []string{u.Name},
			})
		}

		for _, e := range u.Environment {
			if names := Placeholders(e.Value); len(names) > 0 {
				warnings = append(warnings, Warning{
					Kind:    WarningUnresolvedVariable,
					Message: fmt.Sprintf("unit %q: %s references unset variable(s) %s", u.Name, e.Key, strings.Join(names, ", ")),
					Units:   []string{u.Name},
				})
			}
		}

		warnings = append(warnings, adviseHealthCheck(u)...)
		warnings = append(warnings, adviseLogging(u)...)
	}

	return warnings
}

// adviseHealthCheck checks the port and path of a unit's health check. A zero
// port means the traffic port and is not checked.
func adviseHealthCheck(u Unit) []Warning {
	hc := u.HealthCheck
	if hc == nil {
		return nil
	}

	var warnings []Warning
	if hc.Port != 0 && !slices.Contains(u.Ports, PortBinding{Port: hc.Port, Protocol: ProtocolTCP}) {
		warnings = append(warnings, Warning{
			Kind:    WarningHealthCheck,
			Message: fmt.Sprintf("unit %q: health check port %d is not a declared tcp port", u.Name, hc.Port),
			Units:   []string{u.Name},
		})
	}
	if !strings.HasPrefix(hc.Path, "/") {
		warnings = append(warnings, Warning{
			Kind:    WarningHealthCheck,
			Message: fmt.Sprintf("unit %q: health check path %q must start with /", u.Name, hc.Path),
			Units:   []string{u.Name},
		})
	}
	return warnings
}

func adviseLogging(u Unit) []Warning {
	lc := u.Logging
	if lc == nil {
		return nil
	}

	var warnings []Warning
	if strings.TrimSpace(lc.StreamPrefix) == "" {
		warnings = append(warnings, Warning{
			Kind:    WarningLogging,
			Message: fmt.Sprintf("unit %q: log stream prefix is empty", u.Name),
			Units:   []string{u.Name},
		})
	}
	if !slices.Contains(logRetentionDays, lc.RetentionDays) {
		warnings = append(warnings, Warning{
			Kind:    WarningLogging,
			Message: fmt.Sprintf("unit %q: log retention of %d days is not supported", u.Name, lc.RetentionDays),
			Units:   []string{u.Name},
		})
	}
	return warnings
}

func referencedHosts(value string) []string {
	var hosts []string
	for _, m := range hostRefRegex.FindAllStringSubmatch(value, -1) {
		host := m[1]
		if host == "" {
			host = m[2]
		}
		hosts = append(hosts, host)
	}
	return hosts
}

func isSecretKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, marker := range secretKeyMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}
