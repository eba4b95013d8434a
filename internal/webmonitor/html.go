package webmonitor

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Anomaly Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: sans-serif; background: #111; color: #eee; margin: 0; }
        .app { display: grid; grid-template-columns: 2fr 1fr; gap: 16px; padding: 16px; }
        .panel { background: #1c1c1c; border-radius: 8px; padding: 12px; }
        img { width: 100%; border-radius: 4px; }
        #status { font-weight: bold; }
        .alert { color: #ff5555; }
        ul { list-style: none; padding: 0; margin: 0; max-height: 70vh; overflow-y: auto; }
        li { padding: 6px 0; border-bottom: 1px solid #333; font-size: 14px; }
        li small { color: #999; display: block; }
    </style>
</head>
<body>
    <div class="app">
        <div class="panel">
            <h2>Live Feed</h2>
            <p>Status: <span id="status">Waiting for data...</span></p>
            <img src="/stream" alt="live feed">
        </div>
        <div class="panel">
            <h2>Anomalies <span id="count">0</span></h2>
            <ul id="anomalies"></ul>
        </div>
    </div>
    <script>
        const list = document.getElementById('anomalies');
        const count = document.getElementById('count');
        const statusEl = document.getElementById('status');

        function addRecord(rec, prepend) {
            const li = document.createElement('li');
            li.className = 'alert';
            li.textContent = rec.anomaly_reason;
            const small = document.createElement('small');
            small.textContent = rec.timestamp + ' - ' + (rec.detected_objects || []).join(', ');
            li.appendChild(small);
            if (prepend) {
                list.prepend(li);
            } else {
                list.appendChild(li);
            }
        }

        fetch('/api/anomalies').then(r => r.json()).then(data => {
            count.textContent = data.count;
            data.records.slice().reverse().forEach(rec => addRecord(rec, false));
        });

        const events = new EventSource('/api/anomalies/stream');
        events.onmessage = (e) => {
            addRecord(JSON.parse(e.data), true);
            count.textContent = Number(count.textContent) + 1;
        };

        const status = new EventSource('/api/status/stream');
        status.onmessage = (e) => {
            const s = JSON.parse(e.data);
            statusEl.textContent = s.monitor.status;
            statusEl.className = s.monitor.status === 'None' ? '' : 'alert';
        };
    </script>
</body>
</html>
`
